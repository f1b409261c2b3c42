package cluster

import (
	"errors"
)

var (
	ErrFileSystemConflict = errors.New("cluster root already holds a prepared cluster")
	ErrAlreadyRun         = errors.New("bootstrapper has already run")
	ErrInvalidSpec        = errors.New("invalid cluster spec")
)
