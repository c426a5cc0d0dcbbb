package api

import "errors"

var errMissingName = errors.New("name is required")
