package build

var (
	Name    = "precisefmt"
	Version = "v0.0.1+dev"
)
