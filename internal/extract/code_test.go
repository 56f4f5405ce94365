package extract

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// grouped prints a code the way bank slips do: digit groups split by periods and spaces
func grouped(code string) string {
	return code[0:5] + "." + code[5:10] + " " + code[10:15] + "." + code[15:21] + " " +
		code[21:26] + "." + code[26:32] + " " + code[32:33] + " " + code[33:]
}

// dashed splits a code into five digit chunks joined by dashes
func dashed(code string) string {
	var parts []string
	for i := 0; i < len(code); i += 5 {
		end := i + 5
		if end > len(code) {
			end = len(code)
		}
		parts = append(parts, code[i:end])
	}
	return strings.Join(parts, "-")
}

var _ = Describe("CodeExtractor", func() {
	var (
		extractor *CodeExtractor
		blob      string
		code      PaymentCode
		found     bool
	)

	BeforeEach(func() {
		extractor = NewCodeExtractor(DefaultPatterns())
	})

	JustBeforeEach(func() {
		code, found = extractor.Extract(blob)
	})

	When("the text contains a 47 digit run", func() {
		BeforeEach(func() {
			blob = "Linha digitável: " + electricityCode47 + " Vencimento 10/05/2024"
		})

		It("returns exactly those digits", func() {
			Expect(found).To(BeTrue())
			Expect(code).To(Equal(PaymentCode(electricityCode47)))
		})
	})

	When("the digit run is longer than 47", func() {
		BeforeEach(func() {
			blob = "codigo " + electricityCode47 + "999"
		})

		It("truncates to the first 47 digits", func() {
			Expect(code).To(Equal(PaymentCode(electricityCode47)))
			Expect(code).To(HaveLen(47))
		})
	})

	When("the text only contains a 44 digit run", func() {
		BeforeEach(func() {
			blob = "Código de barras: " + otherCode44 + " obrigado"
		})

		It("returns the 44 digit run", func() {
			Expect(found).To(BeTrue())
			Expect(code).To(Equal(PaymentCode(otherCode44)))
		})
	})

	When("a 44 digit run appears before a 47 digit run", func() {
		BeforeEach(func() {
			blob = "barras " + otherCode44 + " linha " + internetCode47
		})

		It("prefers the 47 digit run", func() {
			Expect(code).To(Equal(PaymentCode(internetCode47)))
		})
	})

	When("the code is printed in groups separated by periods and spaces", func() {
		BeforeEach(func() {
			blob = "Pague com o código: " + grouped(electricityCode47) + " até o vencimento"
		})

		It("strips the separators and returns the first 47 digits", func() {
			Expect(found).To(BeTrue())
			Expect(code).To(Equal(PaymentCode(electricityCode47)))
		})
	})

	When("the groups are separated by no-break spaces", func() {
		BeforeEach(func() {
			blob = "Vencimento 10/10/2024 Linha digitável " +
				strings.ReplaceAll(grouped(electricityCode47), " ", "\u00a0") + " Pague em qualquer banco"
		})

		It("treats them like ordinary spaces", func() {
			Expect(found).To(BeTrue())
			Expect(code).To(Equal(PaymentCode(electricityCode47)))
		})
	})

	When("the grouped span has between 44 and 46 digits", func() {
		BeforeEach(func() {
			blob = "Código: " + grouped(electricityCode47)[:52] + " fim"
		})

		It("returns the first 44 digits", func() {
			Expect(code).To(Equal(PaymentCode(electricityCode47[:44])))
		})
	})

	When("the code is only recoverable by harvesting every digit", func() {
		BeforeEach(func() {
			blob = "Código " + dashed(internetCode47)
		})

		It("returns the first 47 digits of the blob", func() {
			Expect(found).To(BeTrue())
			Expect(code).To(Equal(PaymentCode(internetCode47)))
		})
	})

	When("the blob has fewer than 44 digits", func() {
		BeforeEach(func() {
			blob = "Sua fatura de 05/2024 no valor de R$ 120,00 está disponível. Protocolo 123456789"
		})

		It("finds nothing", func() {
			Expect(found).To(BeFalse())
			Expect(code).To(BeEmpty())
		})
	})

	When("the blob has no digits at all", func() {
		BeforeEach(func() {
			blob = "Olá, sua conta chegou"
		})

		It("finds nothing", func() {
			Expect(found).To(BeFalse())
		})
	})

	Describe("Find", func() {
		It("reports the span of an exact run", func() {
			text := "abc " + internetCode47
			_, span, ok := extractor.Find(text)
			Expect(ok).To(BeTrue())
			Expect(span).To(Equal(Span{Start: 4, End: 4 + 47}))
		})

		It("reports the whole blob when harvesting", func() {
			text := dashed(internetCode47)
			_, span, ok := extractor.Find(text)
			Expect(ok).To(BeTrue())
			Expect(span).To(Equal(Span{Start: 0, End: len(text)}))
		})
	})
})
