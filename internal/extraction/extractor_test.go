package extraction

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"attestor/internal/document"
)

const identityCard = `GOVERNMENT OF INDIA
Name: John Smith
DOB: 01/05/1990
Age: 34
Gender: MALE
Mobile No: 9876543210
Email: john.smith@example.com
Address: 12 Park Street,
Bangalore Karnataka 560001
Phone: 9876543210
Aadhaar: 1234 5678 9012
PAN: ABCDE1234F`

type ExtractorSuite struct {
	suite.Suite
}

func TestExtractorSuite(t *testing.T) {
	suite.Run(t, new(ExtractorSuite))
}

func (s *ExtractorSuite) field(set document.FieldSet, name document.FieldName) document.Field {
	f, ok := set.Get(name)
	s.Require().True(ok, "expected %s to be extracted", name)
	return f
}

func (s *ExtractorSuite) TestGenericFields() {
	set := New().Extract(identityCard)

	s.Run("name stops at the end of the line", func() {
		s.Equal("John Smith", s.field(set, document.Name).Raw)
	})

	s.Run("date of birth is normalized and raw is kept", func() {
		dob := s.field(set, document.DateOfBirth)
		s.Equal("01/05/1990", dob.Raw)
		s.Equal("1990-05-01", dob.Normalized)
	})

	s.Run("age", func() {
		s.Equal("34", s.field(set, document.Age).Value())
	})

	s.Run("gender is title cased", func() {
		s.Equal("Male", s.field(set, document.Gender).Normalized)
	})

	s.Run("phone", func() {
		s.Equal("9876543210", s.field(set, document.Phone).Value())
	})

	s.Run("email", func() {
		s.Equal("john.smith@example.com", s.field(set, document.Email).Value())
	})

	s.Run("address runs to the next label and is collapsed", func() {
		s.Equal("12 Park Street, Bangalore Karnataka 560001", s.field(set, document.Address).Normalized)
	})

	s.Run("document identifiers need the document pass", func() {
		s.False(set.Has(document.NationalID))
		s.False(set.Has(document.TaxID))
		s.False(set.Has(document.PostalCode))
	})
}

func (s *ExtractorSuite) TestDocumentPass() {
	set := New(WithDocumentPass()).Extract(identityCard)

	s.Equal("123456789012", s.field(set, document.NationalID).Normalized)
	s.Equal("1234 5678 9012", s.field(set, document.NationalID).Raw)
	s.Equal("ABCDE1234F", s.field(set, document.TaxID).Value())
	s.Equal("560001", s.field(set, document.PostalCode).Value())
	s.Equal("John Smith", s.field(set, document.Name).Raw, "generic fields survive the merge")
}

func (s *ExtractorSuite) TestPostalCodeFromLabel() {
	text := "Address: Flat 4, Lake View Road, Pune\nPIN: 411001"
	set := New(WithDocumentPass()).Extract(text)

	s.Equal("Flat 4, Lake View Road, Pune", s.field(set, document.Address).Normalized)
	s.Equal("411001", s.field(set, document.PostalCode).Value())
}

func (s *ExtractorSuite) TestEdgeCases() {
	s.Run("short text yields nothing", func() {
		s.Equal(0, New(WithDocumentPass()).Extract("abcd").Len())
	})

	s.Run("garbage text yields nothing", func() {
		s.Equal(0, New().Extract("~~~ ### ;;; ... ???").Len())
	})

	s.Run("name falls back to the candidate label", func() {
		set := New().Extract("Name: X\nCandidate: Ravi Kumar")
		s.Equal("Ravi Kumar", s.field(set, document.Name).Raw)
	})

	s.Run("single token name is rejected", func() {
		s.False(New().Extract("Name: Madonna\n").Has(document.Name))
	})

	s.Run("short address is rejected", func() {
		s.False(New().Extract("Address: Home\nPhone: 9876543210").Has(document.Address))
	})

	s.Run("address can end the text", func() {
		set := New().Extract("Address:   221B Baker Street\n  London NW1")
		s.Equal("221B Baker Street London NW1", s.field(set, document.Address).Normalized)
	})

	s.Run("phone needs exactly ten digits", func() {
		s.False(New().Extract("Phone: 98765432101234").Has(document.Phone))
	})

	s.Run("unparseable date keeps the raw match", func() {
		dob := s.field(New().Extract("DOB: 45/45/1990"), document.DateOfBirth)
		s.Equal("45/45/1990", dob.Normalized)
	})

	s.Run("gender outside the literal set is ignored", func() {
		s.False(New().Extract("Gender: Unknown").Has(document.Gender))
	})
}
