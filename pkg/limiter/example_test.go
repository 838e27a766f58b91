package limiter

import (
	"context"
	"fmt"
	"time"
)

func ExampleLimiter() {
	l, err := New(NewMemoryStore(),
		WithPrefix("api:"),
		WithCapacity(Capacity{Window: time.Minute, Min: 60, Max: 100}),
	)
	if err != nil {
		panic(err)
	}

	dec, err := l.Allow(context.Background(), "user_123")
	if err != nil {
		panic(err)
	}

	fmt.Println(dec.Allow, dec.Free)
	// Output:
	// true 39
}

func ExampleNormalize() {
	limits, err := Normalize([]Tier{
		{Flow: 0.4, Burst: 1},
		{Flow: 0.1, Burst: 4},
		{Flow: 0.2, Burst: 2},
		{Flow: 0.3, Burst: 3},
	})
	if err != nil {
		panic(err)
	}

	fmt.Println(limits)
	// Output:
	// [{0.1 4} {0.2 2} {0.4 1}]
}
