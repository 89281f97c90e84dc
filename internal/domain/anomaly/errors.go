package anomaly

import "errors"

// ErrInference wraps autoencoder failures. It never escapes Score.
var ErrInference = errors.New("anomaly inference failed")
