package requests

// LookupRequest resolves a single free-form address string.
type LookupRequest struct {
	Address string `json:"address" binding:"required"`
}

// BatchLookupRequest resolves many addresses in one call.
type BatchLookupRequest struct {
	Addresses []string `json:"addresses" binding:"required,min=1,max=1000"`
}
