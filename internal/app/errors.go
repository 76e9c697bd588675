package service

import "errors"

// ErrNoOwner is returned by Start when no owner public id was set.
var ErrNoOwner = errors.New("no owner public id configured")
