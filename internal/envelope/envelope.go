// Package envelope builds the SOAP body of a Transaccion call.
package envelope

import (
	"strings"

	"github.com/alovak/topup-playground/topup/models"
)

const (
	// Namespace is the XML namespace of the Transaccion element.
	Namespace = "http://tempuri.org/"
	// SOAPAction is the value of the SOAPAction header for Transaccion.
	SOAPAction = Namespace + "Transaccion"
	// ContentType is the Content-Type header of every request.
	ContentType = "text/xml; charset=utf-8"
)

// Elements lists the children of <Transaccion> in wire order.
var Elements = []string{
	"tipoTransaccion",
	"secuencial",
	"lote",
	"monto",
	"cajero",
	"clave",
	"terminalId",
	"merchant",
	"servicio",
	"telefono",
}

const (
	head = `<soap:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <Transaccion xmlns="` + Namespace + `">
`
	tail = `    </Transaccion>
  </soap:Body>
</soap:Envelope>`
)

// Build returns the body for req with amount already formatted and the
// given transaction type. Values are copied verbatim and never escaped;
// request validation keeps markup characters out.
func Build(req models.TransactionRequest, amount, transactionType string) string {
	values := []string{
		transactionType,
		req.Sequence,
		req.Batch,
		amount,
		req.Cashier,
		req.CashierKey,
		req.TerminalID,
		req.MerchantID,
		req.Service,
		req.Phone,
	}

	var b strings.Builder
	b.WriteString(head)
	for i, name := range Elements {
		b.WriteString("      <")
		b.WriteString(name)
		b.WriteString(">")
		b.WriteString(values[i])
		b.WriteString("</")
		b.WriteString(name)
		b.WriteString(">\n")
	}
	b.WriteString(tail)
	return b.String()
}
