package crpt

import (
	"github.com/google/uuid"
)

// DocTypeIntroduceGoods é o tipo padrão de documento criado por NewDocument.
const DocTypeIntroduceGoods = "LP_INTRODUCE_GOODS"

// Document é o corpo de POST /api/v3/lk/documents/create.
// Os nomes JSON são snake_case, exceto importRequest (e description.participantInn).
type Document struct {
	Description    *Description `json:"description"`
	DocID          string       `json:"doc_id"`
	DocStatus      string       `json:"doc_status"`
	DocType        string       `json:"doc_type"`
	ImportRequest  bool         `json:"importRequest"`
	OwnerInn       string       `json:"owner_inn"`
	ParticipantInn string       `json:"participant_inn"`
	ProducerInn    string       `json:"producer_inn"`
	ProductionDate string       `json:"production_date"`
	ProductionType string       `json:"production_type"`
	Products       []Product    `json:"products"`
	RegDate        string       `json:"reg_date"`
	RegNumber      string       `json:"reg_number"`
}

type Description struct {
	ParticipantInn string `json:"participantInn"`
}

type Product struct {
	CertificateDocument       string `json:"certificate_document"`
	CertificateDocumentDate   string `json:"certificate_document_date"`
	CertificateDocumentNumber string `json:"certificate_document_number"`
	OwnerInn                  string `json:"owner_inn"`
	ProducerInn               string `json:"producer_inn"`
	ProductionDate            string `json:"production_date"`
	TnvedCode                 string `json:"tnved_code"`
	UitCode                   string `json:"uit_code"`
	UituCode                  string `json:"uitu_code"`
}

func NewDocument() *Document {
	return &Document{DocType: DocTypeIntroduceGoods}
}

// SampleDocument monta um documento preenchido com dados fictícios e doc_id
// aleatório. Usado pelo crpt-demo e pelo servidor de validação.
func SampleDocument() *Document {
	const (
		inn  = "000000000000"
		date = "2020-01-23"
	)

	doc := NewDocument()
	doc.Description = &Description{ParticipantInn: inn}
	doc.DocID = uuid.NewString()
	doc.DocStatus = "creating"
	doc.ImportRequest = true
	doc.OwnerInn = "1234"
	doc.ParticipantInn = inn
	doc.ProducerInn = inn
	doc.ProductionDate = date
	doc.ProductionType = "type"
	doc.RegDate = date
	doc.RegNumber = "1"
	doc.Products = []Product{{
		CertificateDocument:       "doc",
		CertificateDocumentDate:   date,
		CertificateDocumentNumber: "2",
		OwnerInn:                  inn,
		ProducerInn:               inn,
		ProductionDate:            date,
		TnvedCode:                 "3",
		UitCode:                   "4",
		UituCode:                  "5",
	}}
	return doc
}
