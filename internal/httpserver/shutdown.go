package httpserver

import "time"

// ShutdownTimeout controls how long to wait for in-flight requests and background
// workers during graceful shutdown.
var ShutdownTimeout = 15 * time.Second

// UploadTimeout bounds reading a request body and writing its response.
var UploadTimeout = 2 * time.Minute
