package workflow_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/workflow"
)

var _ = Describe("Chain", func() {
	var chain *workflow.Chain

	BeforeEach(func() {
		var err error
		chain, err = workflow.NewChain([]workflow.Approver{{UserID: 30, Order: 3}, {UserID: 10, Order: 1}, {UserID: 20, Order: 2}}, 0, 99)
		Expect(err).NotTo(HaveOccurred())
	})

	It("sorts reviewers by order", func() {
		Expect(chain.Approvers()).To(Equal([]workflow.Approver{{UserID: 10, Order: 1}, {UserID: 20, Order: 2}, {UserID: 30, Order: 3}}))
		Expect(chain.Active()).To(Equal(int64(10)))
	})

	It("advances one reviewer at a time and exhausts into the final approver", func() {
		for _, id := range []int64{10, 20} {
			state, err := chain.Advance(id, workflow.VerdictApprove)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Exhausted).To(BeFalse())
		}
		state, err := chain.Advance(30, workflow.VerdictApprove)
		Expect(err).NotTo(HaveOccurred())
		Expect(state.Exhausted).To(BeTrue())
		Expect(state.Index).To(Equal(3))
		Expect(state.Next).To(Equal(int64(99)))

		_, err = chain.Advance(99, workflow.VerdictApprove)
		Expect(err).To(MatchError(internal.ErrInvalidTransition))
	})

	It("keeps the index on rejection", func() {
		state, err := chain.Advance(10, workflow.VerdictReject)
		Expect(err).NotTo(HaveOccurred())
		Expect(state.Rejected).To(BeTrue())
		Expect(chain.Index()).To(Equal(0))
	})

	It("swaps the active slot only", func() {
		pos, err := chain.Swap(10, 11)
		Expect(err).NotTo(HaveOccurred())
		Expect(pos).To(Equal(0))
		Expect(chain.Active()).To(Equal(int64(11)))
		Expect(chain.Index()).To(Equal(0))

		_, err = chain.Swap(20, 21)
		Expect(err).To(MatchError(internal.ErrConflict))

		_, err = chain.Swap(11, 30)
		Expect(internal.HasType(err, internal.ErrorTypeValidation)).To(BeTrue())
	})

	It("swaps the final approver once exhausted", func() {
		chain, _ = workflow.NewChain([]workflow.Approver{{UserID: 10, Order: 1}}, 1, 99)
		pos, err := chain.Swap(99, 98)
		Expect(err).NotTo(HaveOccurred())
		Expect(pos).To(Equal(-1))
		Expect(chain.FinalApproverID()).To(Equal(int64(98)))
	})

	It("keeps reviewers and the final approver apart when swapping", func() {
		_, err := chain.Swap(10, 99)
		Expect(internal.HasType(err, internal.ErrorTypeValidation)).To(BeTrue())
		Expect(chain.Active()).To(Equal(int64(10)))

		exhausted, _ := workflow.NewChain([]workflow.Approver{{UserID: 10, Order: 1}, {UserID: 20, Order: 2}}, 2, 99)
		_, err = exhausted.Swap(99, 10)
		Expect(internal.HasType(err, internal.ErrorTypeValidation)).To(BeTrue())
		Expect(exhausted.FinalApproverID()).To(Equal(int64(99)))
	})

	It("rejects out of range indexes", func() {
		_, err := workflow.NewChain([]workflow.Approver{{UserID: 10, Order: 1}}, 2, 99)
		Expect(err).To(HaveOccurred())
	})

	It("validates chain definitions", func() {
		Expect(workflow.ValidateApprovers(nil, 1)).NotTo(Succeed())
		Expect(workflow.ValidateApprovers([]workflow.Approver{{UserID: 1, Order: 1}, {UserID: 2, Order: 1}}, 5)).NotTo(Succeed())
		Expect(workflow.ValidateApprovers([]workflow.Approver{{UserID: 1, Order: 1}, {UserID: 1, Order: 2}}, 5)).NotTo(Succeed())
		Expect(workflow.ValidateApprovers([]workflow.Approver{{UserID: 1, Order: 1}}, 0)).NotTo(Succeed())
		Expect(workflow.ValidateApprovers([]workflow.Approver{{UserID: 1, Order: 1}, {UserID: 2, Order: 2}}, 5)).To(Succeed())
	})
})

var _ = Describe("Transition table", func() {
	It("keeps every kind inside its own status set", func() {
		Expect(workflow.KindRecord.HasStatus(workflow.StatusPendingReview)).To(BeFalse())
		Expect(workflow.KindLetter.HasStatus(workflow.StatusPending)).To(BeFalse())

		_, err := workflow.ParseStatus(workflow.KindSpace, "final_rejected")
		Expect(err).To(HaveOccurred())
	})

	It("lists the legal edges", func() {
		Expect(workflow.Permits(workflow.KindLetter, workflow.StatusPendingReview, workflow.ActionApprove, workflow.StatusPendingFinalApproval)).To(BeTrue())
		Expect(workflow.Permits(workflow.KindSpace, workflow.StatusApproved, workflow.ActionReject, workflow.StatusRejected)).To(BeFalse())
		Expect(workflow.Allowed(workflow.KindCabinet, workflow.StatusRejected, workflow.ActionResubmit)).To(BeTrue())
	})

	It("offers only restore on deleted resources", func() {
		Expect(workflow.AvailableActions(workflow.KindRecord, workflow.StatusApproved, true)).To(Equal([]workflow.Action{workflow.ActionRestore}))
		Expect(workflow.AvailableActions(workflow.KindRecord, workflow.StatusPending, false)).To(ContainElements(workflow.ActionApprove, workflow.ActionReject, workflow.ActionReassign, workflow.ActionCancel))
	})
})
