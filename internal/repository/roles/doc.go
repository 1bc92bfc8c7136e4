// Package roles implements the file-backed role store the controller
// consults for authorization.
//
// Assignments live in a YAML file (role name to account list) and are
// hot-reloaded on change. Lookups fail closed while no file has been
// loaded successfully.
package roles
