package extract

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeConverter returns canned text or errors keyed by filename
type fakeConverter struct {
	texts  map[string]string
	errs   map[string]error
	called []string
}

func newFakeConverter() *fakeConverter {
	return &fakeConverter{
		texts: make(map[string]string),
		errs:  make(map[string]error),
	}
}

func (f *fakeConverter) TextFromDocument(ctx context.Context, attachment Attachment) (string, error) {
	f.called = append(f.called, attachment.Filename)
	if err, ok := f.errs[attachment.Filename]; ok {
		return "", err
	}
	return f.texts[attachment.Filename], nil
}

// fakeRecorder remembers materialized and discarded attachments
type fakeRecorder struct {
	err       error
	saved     []string
	discarded []string
}

func (f *fakeRecorder) Materialize(attachment Attachment) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	path := "stored_" + attachment.Filename
	f.saved = append(f.saved, path)
	return path, nil
}

func (f *fakeRecorder) Discard(paths []string) {
	f.discarded = append(f.discarded, paths...)
}

func pdf(name string) Attachment {
	return Attachment{Filename: name, ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
}

var _ = Describe("Orchestrator", func() {
	var (
		converter    *fakeConverter
		recorder     *fakeRecorder
		orchestrator *Orchestrator
		msg          Message
		result       *Result
		err          error
	)

	BeforeEach(func() {
		converter = newFakeConverter()
		recorder = nil
		msg = Message{}
	})

	JustBeforeEach(func() {
		if recorder != nil {
			orchestrator = NewOrchestrator(NewScanner(DefaultPatterns()), converter, recorder)
		} else {
			orchestrator = NewOrchestrator(NewScanner(DefaultPatterns()), converter, nil)
		}
		result, err = orchestrator.Process(context.Background(), msg)
	})

	When("the body alone is sufficient", func() {
		BeforeEach(func() {
			msg = Message{
				Body:        "Conta de luz " + electricityCode47 + " valor R$ 150,00",
				Attachments: []Attachment{pdf("fatura.pdf")},
			}
		})

		It("does not convert any attachment", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(converter.called).To(BeEmpty())
			Expect(result.Satisfied()).To(BeTrue())
		})
	})

	When("the body has a value and the first attachment has the code", func() {
		BeforeEach(func() {
			msg = Message{
				Body:        "Sua fatura de internet no valor de R$ 129,90 está disponível",
				Attachments: []Attachment{pdf("fatura.pdf"), pdf("contrato.pdf")},
			}
			converter.texts["fatura.pdf"] = "Linha digitável\n" + internetCode47 + "\nTotal R$ 199,90"
			converter.texts["contrato.pdf"] = otherCode47
		})

		It("merges the attachment code with the body value", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Code).To(Equal(PaymentCode(internetCode47)))
			Expect(result.Value.String()).To(Equal("129,90"))
			Expect(result.Category).To(Equal(CategoryInternet))
		})

		It("stops before the second attachment", func() {
			Expect(converter.called).To(Equal([]string{"fatura.pdf"}))
		})
	})

	When("no source yields anything", func() {
		BeforeEach(func() {
			msg = Message{
				Body:        "Olá!",
				Attachments: []Attachment{pdf("a.pdf"), pdf("b.pdf")},
			}
			converter.texts["a.pdf"] = "nada aqui"
		})

		It("returns an empty result without error", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Empty()).To(BeTrue())
			Expect(result.Category).To(Equal(CategoryUnknown))
		})

		It("tries every attachment", func() {
			Expect(converter.called).To(Equal([]string{"a.pdf", "b.pdf"}))
		})
	})

	When("the first attachment fails to convert", func() {
		BeforeEach(func() {
			msg = Message{
				Body:        "Fatura em anexo",
				Attachments: []Attachment{pdf("broken.pdf"), pdf("good.pdf")},
			}
			converter.errs["broken.pdf"] = errors.New("corrupt xref table")
			converter.texts["good.pdf"] = "Código " + electricityCode47 + " Valor R$ 80,00"
		})

		It("recovers the data from the next attachment", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Code).To(Equal(PaymentCode(electricityCode47)))
			Expect(result.Category).To(Equal(CategoryElectricity))
			Expect(result.Value.String()).To(Equal("80,00"))
		})
	})

	When("an attachment is reported unavailable or blank", func() {
		BeforeEach(func() {
			msg = Message{
				Body:        "Fatura em anexo",
				Attachments: []Attachment{pdf("scan.jpg"), pdf("blank.pdf"), pdf("good.pdf")},
			}
			converter.errs["scan.jpg"] = fmt.Errorf("image/jpeg: %w", ErrSourceUnavailable)
			converter.texts["blank.pdf"] = "   "
			converter.texts["good.pdf"] = otherCode44 + " R$ 10,00"
		})

		It("skips them", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Code).To(Equal(PaymentCode(otherCode44)))
			Expect(result.Category).To(Equal(CategoryOther))
		})
	})

	When("the converter fails unrecoverably", func() {
		var cause error

		BeforeEach(func() {
			cause = errors.New("converter crashed")
			msg = Message{
				Body:        "Fatura",
				Attachments: []Attachment{pdf("a.pdf"), pdf("b.pdf")},
			}
			converter.errs["a.pdf"] = Unrecoverable(cause)
		})

		It("returns the error unchanged", func() {
			Expect(err).To(MatchError(cause))
			var upstream *UpstreamError
			Expect(errors.As(err, &upstream)).To(BeTrue())
			Expect(result).To(BeNil())
		})

		It("does not continue with later attachments", func() {
			Expect(converter.called).To(Equal([]string{"a.pdf"}))
		})

		When("attachments were stored", func() {
			BeforeEach(func() {
				recorder = &fakeRecorder{}
			})

			It("discards them so the retry starts clean", func() {
				Expect(err).To(MatchError(cause))
				Expect(recorder.saved).To(Equal([]string{"stored_a.pdf"}))
				Expect(recorder.discarded).To(Equal([]string{"stored_a.pdf"}))
			})
		})
	})

	When("the context is cancelled during conversion", func() {
		BeforeEach(func() {
			msg = Message{Body: "Fatura", Attachments: []Attachment{pdf("a.pdf")}}
			converter.errs["a.pdf"] = fmt.Errorf("rendering: %w", context.Canceled)
		})

		It("propagates the cancellation", func() {
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})

	When("the body already has a code", func() {
		BeforeEach(func() {
			msg = Message{
				Body:        "Linha " + electricityCode47,
				Attachments: []Attachment{pdf("a.pdf")},
			}
			converter.texts["a.pdf"] = internetCode47 + " R$ 55,00"
		})

		It("keeps the body code and category and only fills the value", func() {
			Expect(result.Code).To(Equal(PaymentCode(electricityCode47)))
			Expect(result.Category).To(Equal(CategoryElectricity))
			Expect(result.Value.String()).To(Equal("55,00"))
		})
	})

	When("a recorder is configured", func() {
		BeforeEach(func() {
			recorder = &fakeRecorder{}
			msg = Message{
				Body:        "Fatura",
				Attachments: []Attachment{pdf("a.pdf"), pdf("b.pdf")},
			}
			converter.texts["a.pdf"] = internetCode47 + " R$ 55,00"
		})

		It("records only the attachments it materialized", func() {
			Expect(result.Materialized).To(Equal([]string{"stored_a.pdf"}))
		})

		When("storing fails", func() {
			BeforeEach(func() {
				recorder.err = errors.New("disk full")
			})

			It("still extracts", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Satisfied()).To(BeTrue())
				Expect(result.Materialized).To(BeEmpty())
			})
		})
	})
})
