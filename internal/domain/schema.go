/**
 * @description
 * SchemaCapabilities describes which optional tables and columns exist in the
 * current deployment. It is computed once at startup from the catalog and
 * injected into the components, so hot paths never hit information_schema.
 * An absent table or column always means "feature not present", never an
 * error.
 */
package domain

// SchemaCapabilities is a struct of booleans, one per optional schema feature.
// The zero value is the most conservative deployment: nothing present.
type SchemaCapabilities struct {
	UsersTable             bool
	UserRoleColumn         bool
	UserOnboardedColumn    bool // users.payment_onboarded
	UserLegacyChargesFlag  bool // users.charges_enabled
	ProfilesTable          bool
	ProfileCompleteColumn  bool // profiles.is_profile_complete
	ProfileActiveColumn    bool // profiles.active
	ProfileChargesMirror   bool // profiles.stripe_charges_enabled
	GalleryTable           bool // gallery_images
	ProductsTable          bool
	ProductPublishedColumn bool // products.published
	ConnectivityTable      bool // payment_connectivity
	MembershipsTable       bool
	MembershipCancelColumn bool // memberships.cancel_at_period_end
	NotificationsTable     bool
	EmailAttemptsTable     bool
}
