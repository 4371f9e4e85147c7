package flows

// Deps groups flow dependency sets. The Engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	AddToken AddTokenDeps
	Refresh  RefreshDeps
	Login    LoginDeps
	Logout   LogoutDeps
}
