// Package di assembles the fit registry process on samber/do
package di

import "github.com/samber/do/v2"

// Injector alias
type Injector = do.Injector

// RootScope alias
type RootScope = do.RootScope

// New creates a root injector
var New = do.New
