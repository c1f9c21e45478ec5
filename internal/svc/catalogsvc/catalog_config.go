package catalogsvc

// CatalogConfig holds configuration parameters for the catalog service.
type CatalogConfig struct {
	// MaxCoverSize is the maximum accepted cover upload in bytes. Default is 5MB.
	MaxCoverSize int64 `env:"COVER_MAX_SIZE" default:"5242880"`

	// Interpolator specifies the cover scaling algorithm.
	// Valid values are: "nearestneighbor", "catmullrom", "bilinear", "approxbilinear"
	Interpolator string `env:"COVER_INTERPOLATOR" default:"catmullrom"`
}
