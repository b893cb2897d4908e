package password

import "github.com/Alijeyrad/karsaz_backend/config"

const lowMemoryCapKiB = 32 * 1024

// FromConfig builds hashing parameters from the password section of the
// central config. Zero fields keep the defaults.
func FromConfig(c config.PasswordConfig) Params {
	p := DefaultParams()
	if c.MemoryKiB > 0 {
		p.Memory = c.MemoryKiB
	}
	if c.Iterations > 0 {
		p.Iterations = c.Iterations
	}
	if c.Parallelism > 0 {
		p.Parallelism = c.Parallelism
	}
	if c.SaltLength > 0 {
		p.SaltLength = c.SaltLength
	}
	if c.KeyLength > 0 {
		p.KeyLength = c.KeyLength
	}
	if c.LowMemoryMode && p.Memory > lowMemoryCapKiB {
		// trade memory for passes
		p.Memory = lowMemoryCapKiB
		p.Iterations++
	}
	return p
}
