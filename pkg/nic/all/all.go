// Import this package to register all available link backends
package all

import (
	_ "github.com/samsamfire/goethercat/pkg/nic/raw"
	_ "github.com/samsamfire/goethercat/pkg/nic/virtual"
)
