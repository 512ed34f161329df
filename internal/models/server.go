package models

// APIServer is the HTTP surface lifecycle.
type APIServer interface {
	Start()
	Shutdown() error
}
