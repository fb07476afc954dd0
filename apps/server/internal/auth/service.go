package auth

// Service is the admin session contract consumed by the admin HTTP API.
type Service interface {
	Login(username, password string) (sessionToken string, err error)
	ResolveSession(token string) (username string, ok bool)
	Logout(token string)
	Close() error
}
