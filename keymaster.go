package hwcrypt

import (
	"log"

	"southwinds.dev/hwcrypt/internal/debug"
	"southwinds.dev/hwcrypt/internal/hwmod"
)

// ShouldUseKeymaster reports whether the hardware FDE key should be tied to
// keymaster. Binding is recommended for every keystore module API version
// except the legacy 0.3 release, a carve-out for one older chipset family
// whose keystore cannot hold the binding.
//
// A failed probe (no keystore module registered) keeps binding enabled: the
// carve-out is for one known-legacy version, not for unknown hardware. The
// failure is logged and audited so misconfigured devices are visible.
func (g *Gateway) ShouldUseKeymaster() bool {
	module, err := g.modules.FindByClass(hwmod.KeystoreClass)
	if err != nil {
		debug.Print("keymaster: version probe failed: %v\n", err)
		g.logProbe(false, map[string]interface{}{
			"error": err.Error(),
		})
		return true
	}

	if module.APIVersion == hwmod.LegacyKeystoreVersion {
		debug.Print("keymaster: module %s is legacy %s, skipping binding\n", module.ID, module.APIVersion)
		g.logProbe(true, map[string]interface{}{
			"module":        module.ID,
			"api_version":   module.APIVersion.String(),
			"use_keymaster": false,
		})
		return false
	}

	g.logProbe(true, map[string]interface{}{
		"module":        module.ID,
		"api_version":   module.APIVersion.String(),
		"use_keymaster": true,
	})
	return true
}

func (g *Gateway) logProbe(success bool, metadata map[string]interface{}) {
	if auditErr := g.audit.Log("keymaster_probe", success, metadata); auditErr != nil {
		log.Printf("hwcrypt: audit write failed for keymaster_probe: %v", auditErr)
	}
}
