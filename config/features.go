package config

type Features struct {
	BillingEnabled bool
	ExportEnabled  bool
	MetricsEnabled bool
	EmailEnabled   bool
}

// LoadFeatures reads the feature flags. Billing, export and metrics are on
// unless switched off; email is opt-in.
func LoadFeatures() Features {
	return Features{
		BillingEnabled: getBool("BILLING_ENABLED", true),
		ExportEnabled:  getBool("EXPORT_ENABLED", true),
		MetricsEnabled: getBool("METRICS_ENABLED", true),
		EmailEnabled:   getBool("EMAIL_ENABLED", false),
	}
}
