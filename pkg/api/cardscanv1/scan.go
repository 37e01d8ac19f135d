// Package cardscanv1 holds the request and response messages of the
// cardscan.v1.ScanService API. Messages travel as JSON.
package cardscanv1

// Contact is a contact record as seen by API clients.
type Contact struct {
	Id           string `json:"id,omitempty"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	JobTitle     string `json:"job_title,omitempty"`
	Company      string `json:"company,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Website      string `json:"website,omitempty"`
	Address      string `json:"address,omitempty"`
	Notes        string `json:"notes,omitempty"`
	CardImageRef string `json:"card_image_ref,omitempty"`
	LogoImageRef string `json:"logo_image_ref,omitempty"`
	CreatedAt    int64  `json:"created_at,omitempty"`
	ScannedAt    int64  `json:"scanned_at,omitempty"`
}

// DuplicatePair is a pending pair from a duplicate report.
type DuplicatePair struct {
	Key    string   `json:"key"`
	First  *Contact `json:"first"`
	Second *Contact `json:"second"`
	Rule   string   `json:"rule"`
}

type DetectRequest struct {
	// Image is a JPEG frame; base64 on the wire.
	Image []byte `json:"image"`
}

type DetectResponse struct {
	CardPresent bool `json:"card_present"`
	IsSteady    bool `json:"is_steady"`
}

type ExtractRequest struct {
	Image []byte `json:"image"`
}

type ExtractResponse struct {
	Contact         *Contact `json:"contact"`
	PhoneNormalized string   `json:"phone_normalized,omitempty"`

	// Boxes are [ymin, xmin, ymax, xmax] in 0-1000 space, omitted when unknown.
	LogoBox []int `json:"logo_box,omitempty"`
	CardBox []int `json:"card_box,omitempty"`

	Partial bool `json:"partial"`
}

type SaveScanRequest struct {
	Contact *Contact `json:"contact"`

	// AllowDuplicate saves even when the contact matches an existing record.
	AllowDuplicate bool `json:"allow_duplicate,omitempty"`
}

type SaveScanResponse struct {
	// Contact is the saved record. Nil when the scan was held back as a duplicate.
	Contact *Contact `json:"contact,omitempty"`

	Duplicate   bool     `json:"duplicate"`
	DuplicateOf *Contact `json:"duplicate_of,omitempty"`
	MatchRule   string   `json:"match_rule,omitempty"`

	QuotaWarning bool `json:"quota_warning"`
	Used         int  `json:"used"`
	Limit        int  `json:"limit"`
}

type ListContactsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ListContactsResponse struct {
	Contacts []*Contact `json:"contacts"`
}

type DeleteContactRequest struct {
	ContactId string `json:"contact_id"`
}

type DeleteContactResponse struct{}

type CheckQuotaRequest struct{}

type CheckQuotaResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Warning bool   `json:"warning"`
	Used    int    `json:"used"`
	Limit   int    `json:"limit"`
}

type ListDuplicatesRequest struct{}

type ListDuplicatesResponse struct {
	Pairs []*DuplicatePair `json:"pairs"`
}

type DismissDuplicateRequest struct {
	FirstId  string `json:"first_id"`
	SecondId string `json:"second_id"`
}

type DismissDuplicateResponse struct {
	// Remaining is the duplicate report after the dismissal.
	Remaining []*DuplicatePair `json:"remaining"`
}

type MergeDuplicateRequest struct {
	KeepId   string `json:"keep_id"`
	RemoveId string `json:"remove_id"`
}

type MergeDuplicateResponse struct {
	Contact *Contact `json:"contact"`

	// Remaining is the duplicate report after the merge.
	Remaining []*DuplicatePair `json:"remaining"`
}
