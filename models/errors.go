package models

import "fmt"

// ErrInvalidRequest marks caller input that can never succeed as given
var ErrInvalidRequest = fmt.Errorf("invalid request")
