package domain

// ConsentRequest carries the authorization parameters through the consent
// round trip. It is never persisted.
type ConsentRequest struct {
	ClientID     string
	RedirectURI  string
	Scope        string
	State        string
	ResponseType string
	GrantType    string
}
