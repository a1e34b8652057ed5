package media

// Asset is a raw captured payload: bytes plus the MIME type the capture
// source declared. Immutable once created.
type Asset struct {
	Data []byte
	MIME string
	Name string
}

// Size returns the byte length of the payload.
func (a Asset) Size() int {
	return len(a.Data)
}

// Normalized is a transport-ready image payload. When normalization
// succeeded the bytes are JPEG and Width/Height reflect the bounded
// dimensions; when it fell back the original asset bytes pass through
// untouched and Fallback is set.
type Normalized struct {
	Data     []byte
	MIME     string
	Name     string
	Width    int
	Height   int
	Fallback bool
}

// Size returns the byte length of the payload.
func (n Normalized) Size() int {
	return len(n.Data)
}
