// Package collectors registers the built-in site collectors.
package collectors

import (
	"github.com/openharvest/harvester/internal/collector"
	"github.com/openharvest/harvester/internal/collectors/cdc"
	"github.com/openharvest/harvester/internal/collectors/fda"
)

// RegisterBuiltins registers every built-in collector factory with the
// registry. Instantiation and probing happen later, in Discover.
func RegisterBuiltins(reg *collector.Registry) {
	reg.Register("fda", func() (collector.Collector, error) {
		return fda.New()
	})
	reg.Register("cdc", func() (collector.Collector, error) {
		return cdc.New()
	})
}
