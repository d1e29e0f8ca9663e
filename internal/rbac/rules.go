package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"course:list",
		"rubric:view",
		"eval:create",
		"eval:view-own",
		"tutor:use",
		"user:change_password",
	},
	"teacher": {
		"course:list",
		"rubric:view",
		"rubric:import",
		"eval:create",
		"eval:view-own",
		"eval:view-all",
		"eval:export",
		"search:use",
		"tutor:use",
		"users:list",
	},
	"admin": {
		"*", // everything
	},
}
