package auth

// Known OAuth scopes used by the API.
const (
	ScopeWorkoutsWrite = "workouts:write"
	ScopeWorkoutsRead  = "workouts:read"
)

// CanRead reports whether the claims allow read access; write implies read.
func CanRead(c *Claims) bool {
	return c.HasScope(ScopeWorkoutsRead) || c.HasScope(ScopeWorkoutsWrite)
}
