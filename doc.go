// Package unchained wires an approval-gated conversational code agent.
//
// A human operator submits a task, the planning agent answers or proposes a
// fenced code block, and every proposal waits in a single-slot approval gate
// until the operator approves (the block runs in the session working
// directory and its output goes back to the agent) or denies (the
// conversation ends). The root Service assembles the collaborators:
//
//	cfg, _ := unchained.LoadConfig(ctx, "unchained.yaml")
//	srv, err := unchained.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer srv.Close(ctx)
//	return srv.Server().ListenAndServe(ctx, cfg.Server.Addr)
//
// The same driver backs the terminal front end returned by Console.
package unchained
