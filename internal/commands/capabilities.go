package commands

import (
	"context"

	"github.com/Brownie44l1/fer-stream/internal/config"
	"github.com/Brownie44l1/fer-stream/internal/face"
	"github.com/Brownie44l1/fer-stream/internal/model"
	"github.com/Brownie44l1/fer-stream/internal/pipeline"
)

// newAnalyzer builds the shared capability handles once and returns the
// pipeline over them together with a release function.
func newAnalyzer(ctx context.Context, c *config.Config) (pipeline.Analyzer, func(), error) {
	locator, err := face.New(faceOptions(c))
	if err != nil {
		return nil, nil, err
	}

	if remote, ok := locator.(*face.Remote); ok {
		if err := remote.CheckHealth(ctx); err != nil {
			log.Warnf("faces: remote detector not available: %s", err)
		}
	}

	classifier, err := model.NewClassifier(modelOptions(c))
	if err != nil {
		return nil, nil, err
	}

	log.Infof("model: classes %v, input %dx%d", classifier.Metadata.Classes, classifier.Metadata.ImageSize, classifier.Metadata.ImageSize)

	var analyzer pipeline.Analyzer = pipeline.New(locator, classifier)

	if c.CacheTTL > 0 {
		log.Infof("pipeline: caching results for %s", c.CacheTTL)
		analyzer = pipeline.NewCached(analyzer, c.CacheTTL)
	}

	return analyzer, classifier.Close, nil
}

func faceOptions(c *config.Config) face.Options {
	minConfidence := c.Detector.MinConfidence
	if c.Detector.Backend == face.BackendRemote {
		minConfidence = c.Detector.RemoteMinConfidence
	}

	return face.Options{
		Backend:       c.Detector.Backend,
		CascadePath:   c.Detector.CascadePath,
		MinConfidence: minConfidence,
		MinSize:       c.Detector.MinSize,
		MaxSize:       c.Detector.MaxSize,
		ShiftFactor:   c.Detector.ShiftFactor,
		ScaleFactor:   c.Detector.ScaleFactor,
		IoUThreshold:  c.Detector.IoUThreshold,
		RemoteURL:     c.Detector.RemoteURL,
		RemoteTimeout: c.Detector.RemoteTimeout,
	}
}

func modelOptions(c *config.Config) model.Options {
	return model.Options{
		ModelPath:    c.Classifier.ModelPath,
		MetadataPath: c.Classifier.MetadataPath,
		LibraryPath:  c.Classifier.LibraryPath,
	}
}
