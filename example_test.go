package jbod_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pior/jbod"
	"github.com/pior/jbod/wire"
)

func Example() {
	client, err := jbod.NewClient("127.0.0.1:3333", jbod.Config{
		Retry:  wire.DefaultRetryPolicy,
		Logger: hclog.Default(),
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Mount(ctx); err != nil {
		fmt.Println(err)
		return
	}

	var block wire.Block
	block.Fill(0xaa)
	if err := client.WriteBlock(ctx, 0, &block); err != nil {
		fmt.Println(err)
	}
}

func ExampleErrorKind() {
	err := fmt.Errorf("seek: %w", &wire.ProtocolError{
		Opcode: wire.NewOpcode(wire.CmdSeekToDisk, 42),
		Status: wire.StatusFailed,
	})

	var pe *wire.ProtocolError
	fmt.Println(jbod.ErrorKind(err), errors.As(err, &pe), wire.ShouldCloseConnection(err))
	// Output: protocol true false
}

func ExampleClientOperation() {
	if !jbod.Connect("127.0.0.1", 3333) {
		return
	}
	defer jbod.Disconnect()

	block := make([]byte, wire.BlockSize)
	if jbod.ClientOperation(uint32(wire.NewOpcode(wire.CmdReadBlock, 0)), block) != 0 {
		fmt.Println("read failed")
	}
}
