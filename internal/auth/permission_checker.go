package auth

const (
	PermissionProcessPayments   = "process_payments"
	PermissionReconcilePayments = "reconcile_payments"
	PermissionManageQueue       = "manage_queue"
	PermissionManageCatalog     = "manage_catalog"
	PermissionAdmin             = "admin"
)

// AllPermissions is what the seeder grants the pharmacy administrator.
var AllPermissions = []string{
	PermissionProcessPayments,
	PermissionReconcilePayments,
	PermissionManageQueue,
	PermissionManageCatalog,
	PermissionAdmin,
}

type PermissionChecker interface {
	HasAnyPermission(userPermissions []string, requiredPermissions []string) bool
}

type DefaultPermissionChecker struct{}

func NewPermissionChecker() PermissionChecker {
	return &DefaultPermissionChecker{}
}

// HasAnyPermission reports whether the user holds one of the required
// permissions. admin satisfies every check.
func (c *DefaultPermissionChecker) HasAnyPermission(userPermissions []string, requiredPermissions []string) bool {
	for _, userPerm := range userPermissions {
		if userPerm == PermissionAdmin {
			return true
		}
		for _, requiredPerm := range requiredPermissions {
			if userPerm == requiredPerm {
				return true
			}
		}
	}
	return false
}
