// Package client wires the response engine into a ready-to-use HTTP client.
//
// New builds the net/http transport, the extraction pool, the connection
// monitor and telemetry from one Config. Requests go through Submit, which
// returns an operation.Handle, or through Do and GetJSON, which wait for the
// result.
//
//	cfg, err := config.Load[client.Config]("orders-client")
//	if err != nil {
//	    return err
//	}
//	c, err := client.New(*cfg)
//	if err != nil {
//	    return err
//	}
//	if err := c.Start(ctx); err != nil {
//	    return err
//	}
//	defer c.Stop(context.Background())
//
//	order, err := client.GetJSON[Order](ctx, c, "/orders/42")
//
// The Client is a component.Component, so it can also be registered with a
// component.Registry next to the rest of an application.
package client
