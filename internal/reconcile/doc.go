// Package reconcile runs the periodic health reconciliation of sync tasks.
//
// Every pass lists the RUNNING and PAUSED tasks and recomputes the health of each one from its
// Kafka Connect connector with bounded parallelism. Connector failures never abort a pass; the
// orchestrator logs them and keeps the last known health.
//
// The pass interval is jittered so that several replicas do not poll Kafka Connect in lockstep.
//
// # Usage
//
//	r := reconcile.New(orchestratorSvc,
//	    reconcile.WithInterval(cfg.Reconcile.GetInterval()),
//	    reconcile.WithConcurrency(cfg.Reconcile.GetConcurrency()),
//	)
//	go func() {
//	    if err := r.Start(ctx); err != nil {
//	        logger.Errorf("reconciler failed: %v", err)
//	    }
//	}()
//	defer r.Stop()
package reconcile
