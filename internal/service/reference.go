package service

import (
	"encoding/base64"
	"strconv"
	"strings"

	apperrors "github.com/clinicrecords/securelink-server/internal/errors"
	"github.com/clinicrecords/securelink-server/internal/model"
)

const referenceSeparator = "_"

// EncodeReference packs a document id and its patient id into the opaque
// `doc` URL parameter: base64("{documentID}_{patientID}").
//
// The encoding is reversible and unsigned. It only hides the ids from casual
// editing; authorization rests on comparing the decoded patient id with the
// token's patient.
func EncodeReference(documentID, patientID int64) string {
	raw := strconv.FormatInt(documentID, 10) + referenceSeparator + strconv.FormatInt(patientID, 10)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeReference reverses EncodeReference. Any deviation from the exact
// shape yields a MALFORMED_REFERENCE error.
func DecodeReference(reference string) (model.DocumentReference, error) {
	raw, err := base64.StdEncoding.DecodeString(reference)
	if err != nil {
		return model.DocumentReference{}, apperrors.MalformedReference("not base64").WithCause(err)
	}

	parts := strings.Split(string(raw), referenceSeparator)
	if len(parts) != 2 {
		return model.DocumentReference{}, apperrors.MalformedReference("expected exactly one separator")
	}

	documentID, err := parseID(parts[0])
	if err != nil {
		return model.DocumentReference{}, apperrors.MalformedReference("invalid document id").WithCause(err)
	}
	patientID, err := parseID(parts[1])
	if err != nil {
		return model.DocumentReference{}, apperrors.MalformedReference("invalid patient id").WithCause(err)
	}

	return model.DocumentReference{
		DocumentID:       documentID,
		ClaimedPatientID: patientID,
	}, nil
}

// parseID accepts only unsigned decimal digits; strconv alone would allow a sign.
func parseID(s string) (int64, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.ParseInt(s, 10, 64)
}
