package consultation_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/pharmacy-management/internal/consultation"
	consultationDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/consultation"
)

var _ = Describe("Queue ranking", func() {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	positions := func(ps []consultation.Placement) map[int64]int {
		out := map[int64]int{}
		for _, p := range ps {
			if p.Status == consultation.EntryPending {
				out[p.ConsultationID] = p.Position
			}
		}
		return out
	}

	It("ranks by join time", func() {
		ps := consultation.Rank(consultation.Snapshot{
			Queued: []consultation.Waiting{
				{ConsultationID: 3, JoinedAt: base.Add(2 * time.Minute)},
				{ConsultationID: 1, JoinedAt: base},
				{ConsultationID: 2, JoinedAt: base.Add(time.Minute)},
			},
		})
		Expect(positions(ps)).To(Equal(map[int64]int{1: 1, 2: 2, 3: 3}))
	})

	It("closes the gap when the head leaves", func() {
		ps := consultation.Rank(consultation.Snapshot{
			Queued: []consultation.Waiting{
				{ConsultationID: 2, JoinedAt: base.Add(time.Minute)},
				{ConsultationID: 3, JoinedAt: base.Add(2 * time.Minute)},
			},
		})
		Expect(positions(ps)).To(Equal(map[int64]int{2: 1, 3: 2}))
	})

	It("breaks join-time ties by id", func() {
		ps := consultation.Rank(consultation.Snapshot{
			Queued: []consultation.Waiting{
				{ConsultationID: 9, JoinedAt: base},
				{ConsultationID: 4, JoinedAt: base},
			},
		})
		Expect(positions(ps)).To(Equal(map[int64]int{4: 1, 9: 2}))
	})

	It("counts in-progress consultations in the wait", func() {
		ps := consultation.Rank(consultation.Snapshot{
			AverageMinutes: 15,
			Active:         []consultation.Waiting{{ConsultationID: 1, JoinedAt: base}},
			Queued: []consultation.Waiting{
				{ConsultationID: 2, JoinedAt: base.Add(time.Minute)},
				{ConsultationID: 3, JoinedAt: base.Add(2 * time.Minute)},
				{ConsultationID: 4, JoinedAt: base.Add(3 * time.Minute)},
			},
		})
		waits := map[int64]int{}
		for _, p := range ps {
			waits[p.ConsultationID] = p.EstimatedWaitTime
		}
		Expect(waits[2]).To(Equal(15))
		Expect(waits[3]).To(Equal(30))
		Expect(waits[4]).To(Equal(45))
	})

	It("gives unique priorities with active entries on top", func() {
		ps := consultation.Rank(consultation.Snapshot{
			Active: []consultation.Waiting{{ConsultationID: 1, JoinedAt: base}},
			Queued: []consultation.Waiting{
				{ConsultationID: 2, JoinedAt: base.Add(time.Minute)},
				{ConsultationID: 3, JoinedAt: base.Add(2 * time.Minute)},
			},
		})
		prio := map[int64]int{}
		seen := map[int]bool{}
		for _, p := range ps {
			Expect(seen[p.Priority]).To(BeFalse())
			seen[p.Priority] = true
			prio[p.ConsultationID] = p.Priority
		}
		Expect(prio[1]).To(BeNumerically(">", prio[2]))
		Expect(prio[2]).To(BeNumerically(">", prio[3]))
	})

	It("computes the wait formula", func() {
		Expect(consultation.EstimateWait(2, 1, 15)).To(Equal(45))
		Expect(consultation.EstimateWait(0, 0, 15)).To(Equal(0))
		Expect(consultation.EstimateWait(1, 0, 0)).To(Equal(consultation.DefaultAverageMinutes))
	})

	DescribeTable("maps consultation status to entry status",
		func(s consultationDatamodel.Status, want consultation.EntryStatus, ok bool) {
			got, gotOK := consultation.EntryStatusOf(s)
			Expect(gotOK).To(Equal(ok))
			Expect(got).To(Equal(want))
		},
		Entry("queued", consultationDatamodel.StatusQueued, consultation.EntryPending, true),
		Entry("in progress", consultationDatamodel.StatusInProgress, consultation.EntryActive, true),
		Entry("completed", consultationDatamodel.StatusCompleted, consultation.EntryCompleted, true),
		Entry("cancelled", consultationDatamodel.StatusCancelled, consultation.EntryCancelled, true),
		Entry("no show", consultationDatamodel.StatusNoShow, consultation.EntrySkipped, true),
		Entry("requested", consultationDatamodel.StatusRequested, consultation.EntryStatus(""), false),
	)
})
