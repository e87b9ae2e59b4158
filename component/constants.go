package component

// component names
const (
	ComponentConfig      = "config"
	ComponentLogger      = "logger"
	ComponentFitRegistry = "fit_registry"
	ComponentAdmin       = "admin"
)
