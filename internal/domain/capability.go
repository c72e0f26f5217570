package domain

// Capability is the permission enum checked uniformly by the ledger contract
// role gates and the off-chain service layer, so authorization logic cannot
// drift between the two tiers.
type Capability string

const (
	// CapabilityRecipient can claim credentials and see the full view of
	// its own records.
	CapabilityRecipient Capability = "recipient"

	// CapabilityIssuer can mint credentials and revoke the ones it issued.
	CapabilityIssuer Capability = "issuer"

	// CapabilityVerifier can set the out-of-band verification flag.
	CapabilityVerifier Capability = "verifier"

	// CapabilityAdmin can do everything, including role grants and burning
	// expired tokens.
	CapabilityAdmin Capability = "admin"
)

// ParseCapability maps a claim string to a Capability, defaulting to
// recipient for unknown values so a malformed token never escalates.
func ParseCapability(s string) Capability {
	switch Capability(s) {
	case CapabilityIssuer, CapabilityVerifier, CapabilityAdmin:
		return Capability(s)
	default:
		return CapabilityRecipient
	}
}
