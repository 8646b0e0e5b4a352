package commands

import (
	"github.com/Brownie44l1/fer-stream/internal/event"
)

var log = event.Log
