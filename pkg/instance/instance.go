package instance

import "github.com/openbasket/storefront/pkg/env"

// DeviceID returns the stable identifier for this storefront installation.
// It keys the cached session token so two installs never share a session.
func DeviceID() string {
	return env.Get("STOREFRONT_DEVICE_ID", "device-0")
}
