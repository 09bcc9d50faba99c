// Package model defines the request, result and failure types shared by the
// simulator, executors, engine and HTTP layer.
package model
