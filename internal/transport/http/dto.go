package httptransport

import (
	"time"

	"certledger/internal/domain"
	"certledger/internal/issuer"
	"certledger/internal/record"
	"certledger/internal/verify"
)

type issueRequest struct {
	EnrollmentID string `json:"enrollment_id"`

	RecipientID      string `json:"recipient_id"`
	RecipientName    string `json:"recipient_name"`
	RecipientEmail   string `json:"recipient_email"`
	RecipientAddress string `json:"recipient_address"`

	CourseID    string `json:"course_id"`
	CourseTitle string `json:"course_title"`

	EvaluationScore     float64   `json:"evaluation_score"`
	EvaluationNarrative string    `json:"evaluation_narrative,omitempty"`
	Passed              bool      `json:"passed"`
	CompletedAt         time.Time `json:"completed_at"`

	CredentialType int        `json:"credential_type"`
	IsSoulbound    bool       `json:"is_soulbound,omitempty"`
	ValidUntil     *time.Time `json:"valid_until,omitempty"`

	IssuerName  string `json:"issuer_name"`
	Description string `json:"description,omitempty"`

	ConsentAt      *time.Time `json:"consent_at,omitempty"`
	RetentionClass string     `json:"retention_class,omitempty"`
}

func (r issueRequest) toDomain(actor string) issuer.IssueRequest {
	req := issuer.IssueRequest{
		Actor:               actor,
		EnrollmentID:        r.EnrollmentID,
		RecipientID:         r.RecipientID,
		RecipientName:       r.RecipientName,
		RecipientEmail:      r.RecipientEmail,
		RecipientAddress:    domain.Address(r.RecipientAddress),
		CourseID:            r.CourseID,
		CourseTitle:         r.CourseTitle,
		EvaluationScore:     r.EvaluationScore,
		EvaluationNarrative: r.EvaluationNarrative,
		Passed:              r.Passed,
		CompletedAt:         r.CompletedAt,
		CredentialType:      domain.CredentialType(r.CredentialType),
		IsSoulbound:         r.IsSoulbound,
		IssuerName:          r.IssuerName,
		Description:         r.Description,
		RetentionClass:      r.RetentionClass,
	}
	if r.ValidUntil != nil {
		req.ValidUntil = *r.ValidUntil
	}
	if r.ConsentAt != nil {
		req.ConsentAt = *r.ConsentAt
	}
	return req
}

type issueResponse struct {
	TokenID uint64 `json:"token_id"`
	TxHash  string `json:"tx_hash"`
	Status  string `json:"status"`
}

func toIssueResponse(res issuer.IssueResult) issueResponse {
	return issueResponse{
		TokenID: uint64(res.TokenID),
		TxHash:  res.TxHash,
		Status:  res.Status,
	}
}

type batchIssueRequest struct {
	Items []issueRequest `json:"items"`
}

type batchItemResponse struct {
	Index   int    `json:"index"`
	TokenID uint64 `json:"token_id,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

type batchIssueResponse struct {
	TxHash      string              `json:"tx_hash,omitempty"`
	BlockNumber uint64              `json:"block_number,omitempty"`
	Items       []batchItemResponse `json:"items"`
}

func toBatchResponse(res issuer.BatchResult) batchIssueResponse {
	out := batchIssueResponse{
		TxHash:      res.TxHash,
		BlockNumber: res.BlockNumber,
		Items:       make([]batchItemResponse, len(res.Items)),
	}
	for i, item := range res.Items {
		out.Items[i] = batchItemResponse{
			Index:   item.Index,
			TokenID: uint64(item.TokenID),
			Status:  item.Status,
			Error:   item.Error,
		}
	}
	return out
}

type onChainResponse struct {
	Owner               string     `json:"owner"`
	Issuer              string     `json:"issuer"`
	CourseHash          string     `json:"course_hash"`
	SubjectHash         string     `json:"subject_hash"`
	EvaluationHash      string     `json:"evaluation_hash"`
	CredentialType      string     `json:"credential_type"`
	IsSoulbound         bool       `json:"is_soulbound"`
	CompletionTimestamp time.Time  `json:"completion_timestamp"`
	ValidUntil          *time.Time `json:"valid_until,omitempty"`
	IsVerified          bool       `json:"is_verified"`
}

type recordResponse struct {
	RecipientID         string    `json:"recipient_id"`
	RecipientName       string    `json:"recipient_name"`
	RecipientEmail      string    `json:"recipient_email"`
	CourseID            string    `json:"course_id"`
	CourseTitle         string    `json:"course_title"`
	EvaluationScore     float64   `json:"evaluation_score"`
	EvaluationNarrative string    `json:"evaluation_narrative,omitempty"`
	CompletedAt         time.Time `json:"completed_at"`
	IssuerName          string    `json:"issuer_name"`
	MetadataCID         string    `json:"metadata_cid"`
	TxHash              string    `json:"tx_hash"`
	BlockNumber         uint64    `json:"block_number"`
}

type verifyResponse struct {
	TokenID uint64           `json:"token_id"`
	IsValid bool             `json:"is_valid"`
	Reason  string           `json:"reason"`
	OnChain *onChainResponse `json:"on_chain,omitempty"`
	Record  *recordResponse  `json:"record,omitempty"`
}

func toVerifyResponse(view verify.FilteredView) verifyResponse {
	out := verifyResponse{
		TokenID: uint64(view.TokenID),
		IsValid: view.IsValid,
		Reason:  view.Reason,
	}
	if view.OnChain != nil {
		out.OnChain = &onChainResponse{
			Owner:               string(view.OnChain.Owner),
			Issuer:              string(view.OnChain.Issuer),
			CourseHash:          view.OnChain.CourseHash.Hex(),
			SubjectHash:         view.OnChain.SubjectHash.Hex(),
			EvaluationHash:      view.OnChain.EvaluationHash.Hex(),
			CredentialType:      view.OnChain.CredentialType.String(),
			IsSoulbound:         view.OnChain.IsSoulbound,
			CompletionTimestamp: view.OnChain.CompletionTimestamp,
			IsVerified:          view.OnChain.IsVerified,
		}
		if !view.OnChain.ValidUntil.IsZero() {
			vu := view.OnChain.ValidUntil
			out.OnChain.ValidUntil = &vu
		}
	}
	if view.Record != nil {
		out.Record = toRecordResponse(*view.Record)
	}
	return out
}

func toRecordResponse(rec record.Record) *recordResponse {
	return &recordResponse{
		RecipientID:         rec.RecipientID,
		RecipientName:       rec.RecipientName,
		RecipientEmail:      rec.RecipientEmail,
		CourseID:            rec.CourseID,
		CourseTitle:         rec.CourseTitle,
		EvaluationScore:     rec.EvaluationScore,
		EvaluationNarrative: rec.EvaluationNarrative,
		CompletedAt:         rec.CompletedAt,
		IssuerName:          rec.IssuerName,
		MetadataCID:         rec.MetadataCID,
		TxHash:              rec.TxHash,
		BlockNumber:         rec.BlockNumber,
	}
}

type claimResponse struct {
	TokenID        uint64    `json:"token_id"`
	CredentialType string    `json:"credential_type"`
	CourseTitle    string    `json:"course_title"`
	IssuerName     string    `json:"issuer_name"`
	RecipientName  string    `json:"recipient_name"`
	CompletedAt    time.Time `json:"completed_at"`
	MetadataCID    string    `json:"metadata_cid"`
	TxHash         string    `json:"tx_hash"`
	IsValid        bool      `json:"is_valid"`
	Reason         string    `json:"reason"`
}

func toClaimResponse(s verify.CredentialSummary) claimResponse {
	return claimResponse{
		TokenID:        uint64(s.TokenID),
		CredentialType: s.CredentialType.String(),
		CourseTitle:    s.CourseTitle,
		IssuerName:     s.IssuerName,
		RecipientName:  s.RecipientName,
		CompletedAt:    s.CompletedAt,
		MetadataCID:    s.MetadataCID,
		TxHash:         s.TxHash,
		IsValid:        s.IsValid,
		Reason:         s.Reason,
	}
}

type listItemResponse struct {
	TokenID        uint64    `json:"token_id"`
	CourseID       string    `json:"course_id"`
	CourseTitle    string    `json:"course_title"`
	CredentialType string    `json:"credential_type"`
	CompletedAt    time.Time `json:"completed_at"`
	MetadataCID    string    `json:"metadata_cid"`
	IsValid        bool      `json:"is_valid"`
	Reason         string    `json:"reason"`
}

func toListResponse(items []issuer.CredentialOverview) []listItemResponse {
	out := make([]listItemResponse, len(items))
	for i, item := range items {
		out[i] = listItemResponse{
			TokenID:        uint64(item.Record.TokenID),
			CourseID:       item.Record.CourseID,
			CourseTitle:    item.Record.CourseTitle,
			CredentialType: item.Record.CredentialType.String(),
			CompletedAt:    item.Record.CompletedAt,
			MetadataCID:    item.Record.MetadataCID,
			IsValid:        item.Verification.IsValid,
			Reason:         item.Verification.Reason,
		}
	}
	return out
}
