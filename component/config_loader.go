package component

// ConfigLoader configuration reading contract.
// Components read their own section through it instead of depending on a
// concrete application config struct.
type ConfigLoader interface {
	// Get raw value (e.g. "fit_registry.default_lease_seconds")
	Get(key string) interface{}

	// Unmarshal decodes a whole section into v
	//
	// Example:
	//   var cfg registry.Config
	//   if err := loader.Unmarshal("fit_registry", &cfg); err != nil {
	//       return err
	//   }
	Unmarshal(key string, v interface{}) error

	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool

	// IsSet reports whether key exists
	IsSet(key string) bool
}
