package maintenance_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/core/clock"
	"github.com/frahmantamala/survey-management/internal/maintenance"
	"github.com/frahmantamala/survey-management/internal/testutil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubJob struct {
	name  string
	runs  int
	err   error
	panic bool
}

func (j *stubJob) Name() string { return j.name }

func (j *stubJob) Run(context.Context) error {
	j.runs++
	if j.panic {
		panic("boom")
	}
	return j.err
}

var _ = Describe("Scheduler", func() {
	var (
		ctx       context.Context
		scheduler *maintenance.Scheduler
	)

	BeforeEach(func() {
		ctx = context.Background()
		colombo, err := time.LoadLocation("Asia/Colombo")
		Expect(err).NotTo(HaveOccurred())
		scheduler = maintenance.NewScheduler(colombo, testutil.Logger())
	})

	It("rejects an invalid cron expression", func() {
		err := scheduler.Register("not a cron", &stubJob{name: "broken"})
		Expect(err).To(MatchError(ContainSubstring("broken")))
	})

	It("rejects a duplicate job name", func() {
		Expect(scheduler.Register("0 9 * * *", &stubJob{name: "dup"})).To(Succeed())
		Expect(scheduler.Register("0 10 * * *", &stubJob{name: "dup"})).NotTo(Succeed())
	})

	It("runs a job on demand", func() {
		job := &stubJob{name: "on-demand"}
		Expect(scheduler.Register("0 9 * * *", job)).To(Succeed())

		Expect(scheduler.RunNow(ctx, "on-demand")).To(Succeed())
		Expect(job.runs).To(Equal(1))
	})

	It("tags a failure line with the job name once", func() {
		var out bytes.Buffer
		colombo, err := time.LoadLocation("Asia/Colombo")
		Expect(err).NotTo(HaveOccurred())
		logged := maintenance.NewScheduler(colombo, slog.New(slog.NewJSONHandler(&out, nil)))
		Expect(logged.Register("0 9 * * *", &stubJob{name: "failing", err: errors.New("nope")})).To(Succeed())

		Expect(logged.RunNow(ctx, "failing")).To(HaveOccurred())

		var line string
		for _, l := range strings.Split(strings.TrimSpace(out.String()), "\n") {
			if strings.Contains(l, "maintenance job failed") {
				line = l
			}
		}
		Expect(line).NotTo(BeEmpty())
		Expect(strings.Count(line, `"job":`)).To(Equal(1))
	})

	It("reports an unknown job as not found", func() {
		err := scheduler.RunNow(ctx, "missing")

		var appErr *internal.AppError
		Expect(errors.As(err, &appErr)).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeJobNotFound))
	})

	It("turns a job failure or panic into an error", func() {
		failing := &stubJob{name: "failing", err: errors.New("nope")}
		panicking := &stubJob{name: "panicking", panic: true}
		Expect(scheduler.Register("0 9 * * *", failing)).To(Succeed())
		Expect(scheduler.Register("0 9 * * *", panicking)).To(Succeed())

		Expect(scheduler.RunNow(ctx, "failing")).To(MatchError("nope"))
		Expect(scheduler.RunNow(ctx, "panicking")).To(MatchError(ContainSubstring("panicked")))
	})

	It("lists entries by name with their next fire time", func() {
		Expect(scheduler.Register("0 9 25 * *", &stubJob{name: "b"})).To(Succeed())
		Expect(scheduler.Register("55 23 * * *", &stubJob{name: "a"})).To(Succeed())
		scheduler.Start()
		defer func() { Expect(scheduler.Stop(ctx)).To(Succeed()) }()

		Eventually(func() []maintenance.Entry { return scheduler.Entries() }).Should(HaveLen(2))
		entries := scheduler.Entries()
		Expect(entries[0].Name).To(Equal("a"))
		Expect(entries[0].Spec).To(Equal("55 23 * * *"))
		Eventually(func() time.Time { return scheduler.Entries()[0].Next }).ShouldNot(BeZero())
	})

	It("builds the full job set from configuration", func() {
		cfg := internal.Config{}
		cfg.ApplyDefaults()

		s, err := maintenance.NewFromConfig(cfg.Scheduler, maintenance.Dependencies{
			Retention:   &fakeRetention{},
			Submissions: &fakeCounter{},
			Accounts:    &fakeFinder{},
			Notifier:    &recordingNotifier{},
			Clock:       clock.NewMock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)),
			Logger:      testutil.Logger(),
		})
		Expect(err).NotTo(HaveOccurred())

		names := []string{}
		for _, e := range s.Entries() {
			names = append(names, e.Name)
		}
		Expect(names).To(ConsistOf(
			maintenance.JobReminder, maintenance.JobPurge,
			maintenance.JobDailySummary, maintenance.JobWeeklySummary,
			maintenance.JobInactivity, maintenance.JobMilestone,
		))
	})

	It("rejects an unknown timezone", func() {
		_, err := maintenance.NewFromConfig(internal.SchedulerConfig{Timezone: "Mars/Olympus"}, maintenance.Dependencies{Logger: testutil.Logger()})
		Expect(err).To(HaveOccurred())
	})
})
