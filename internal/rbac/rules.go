package rbac

// Default policy. Candidates sit papers; examiners upload them and
// review results.
var RolePermissions = map[string][]string{
	"candidate": {
		"questionset:list",
		"question:browse",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
		"user:change_password",
	},
	"examiner": {
		"questionset:upload",
		"questionset:list",
		"question:browse",
		"attempt:view-all",
		"users:bulk_upsert",
		"users:list",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
