// Package scheduler provides the Service that owns scheduled jobs at runtime.
//
// A Service keeps one in-process timer per PENDING job, reloads timers from
// the store on Start, and runs a periodic sweep that fires overdue jobs whose
// timers were missed. Every fire path goes through the same atomic
// PENDING to PROCESSING guard, so a timer and a sweep racing on one job
// publish it once.
//
// Basic usage:
//
//	svc := scheduler.New(store, store, platforms, store,
//	    scheduler.WithLogger(logger),
//	    scheduler.WithSweepInterval(time.Minute),
//	)
//	if err := svc.Start(ctx); err != nil {
//	    return err
//	}
//	defer svc.Stop()
//
//	err := svc.Create(ctx, &core.ScheduledJob{
//	    OwnerID:       "user-1",
//	    Content:       "launch day",
//	    Platforms:     []core.Platform{core.PlatformTwitter},
//	    ScheduledTime: time.Now().Add(time.Hour),
//	})
package scheduler
