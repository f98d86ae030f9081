package locate

import (
	"github.com/bronystylecrazy/ultraweave/bytecode"
	"github.com/bronystylecrazy/ultraweave/inject"
	"go.uber.org/multierr"
)

// Sites is everything the weaver needs for one type.
type Sites struct {
	Fields  []FieldSite
	Methods []MethodSite
	Paths   []ConstructionPath
	// StaticReturns are the return points of static initialization, empty
	// when the class has none.
	StaticReturns []int
}

// Locate runs every locator over c. Failures of independent members are
// combined so one pass reports all of them.
func Locate(c *bytecode.Class, t *inject.TypeDescriptor) (*Sites, error) {
	sites := &Sites{}

	paths, err := ConstructionPaths(c)
	sites.Paths = paths

	for _, f := range t.Fields() {
		fs, fErr := fieldSites(c, f, paths)
		if fErr != nil {
			err = multierr.Append(err, fErr)
			continue
		}
		sites.Fields = append(sites.Fields, fs...)
	}

	methods, mErr := MethodSites(c, t)
	err = multierr.Append(err, mErr)
	sites.Methods = methods

	if clinit := c.StaticInitializer(); clinit != nil {
		sites.StaticReturns = Returns(clinit)
	}

	if err != nil {
		return nil, err
	}
	return sites, nil
}
