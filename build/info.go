package build

import "fmt"

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

func IsDevelopment() bool {
	return Mode == ModeDevelopment
}

func IsProduction() bool {
	return Mode == ModeProduction
}

// String renders the build for the version command.
func String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s)", Name, Version, Commit, BuildDate, Mode)
}
