package local_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-research-team/dtx-cell/cell"
	"github.com/x-research-team/dtx-cell/engine/local"
)

type feed struct {
	Items []string `json:"items"`
}

type feedQuery struct{}

func (feedQuery) QueryName() string { return "feed" }

// next читает следующий снимок или завершает тест по таймауту.
func next[T any](t *testing.T, sub cell.Subscription[T]) cell.Snapshot[T] {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		require.True(t, ok, "Канал снимков не должен быть закрыт")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("не дождались снимка")
		return cell.Snapshot[T]{}
	}
}

func TestEngine_LoadingThenData(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	engine, err := local.New(func(ctx context.Context, q cell.Query, opts cell.RequestOptions) (*feed, error) {
		<-gate
		return &feed{Items: []string{fmt.Sprint(opts.Variables["user"])}}, nil
	})
	require.NoError(t, err)
	defer engine.Shutdown(context.Background())

	sub, err := engine.Watch(context.Background(), feedQuery{}, cell.RequestOptions{Variables: cell.Variables{"user": "ann"}})
	require.NoError(t, err)
	defer sub.Close()

	loading := next(t, sub)
	assert.True(t, loading.Loading)
	assert.Nil(t, loading.Data)
	assert.Equal(t, local.NetworkLoading, loading.Meta[local.MetaNetworkStatus])
	assert.NotEmpty(t, loading.Meta[local.MetaSubscriptionID])

	close(gate)
	ready := next(t, sub)
	assert.False(t, ready.Loading)
	require.NotNil(t, ready.Data)
	assert.Equal(t, []string{"ann"}, ready.Data.Items)
	assert.Equal(t, local.NetworkReady, ready.Meta[local.MetaNetworkStatus])
}

func TestEngine_ErrorSnapshot(t *testing.T) {
	t.Parallel()

	fetchErr := errors.New("сервис недоступен")
	engine, err := local.New(func(context.Context, cell.Query, cell.RequestOptions) (*feed, error) {
		return nil, fetchErr
	})
	require.NoError(t, err)
	defer engine.Shutdown(context.Background())

	sub, err := engine.Watch(context.Background(), feedQuery{}, cell.RequestOptions{})
	require.NoError(t, err)
	defer sub.Close()

	var snap cell.Snapshot[feed]
	for snap = next(t, sub); snap.Loading; snap = next(t, sub) {
	}
	assert.ErrorIs(t, snap.Err, fetchErr)
	assert.Equal(t, local.NetworkError, snap.Meta[local.MetaNetworkStatus])
}

func TestEngine_Refetch(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	gate := make(chan struct{}, 2)
	engine, err := local.New(func(ctx context.Context, _ cell.Query, _ cell.RequestOptions) (*feed, error) {
		<-gate
		n := calls.Add(1)
		return &feed{Items: []string{fmt.Sprintf("v%d", n)}}, nil
	})
	require.NoError(t, err)
	defer engine.Shutdown(context.Background())

	sub, err := engine.Watch(context.Background(), feedQuery{}, cell.RequestOptions{})
	require.NoError(t, err)
	defer sub.Close()

	require.True(t, next(t, sub).Loading)
	gate <- struct{}{}
	first := next(t, sub)
	require.NotNil(t, first.Data)
	assert.Equal(t, []string{"v1"}, first.Data.Items)

	refetch, ok := first.Meta[local.MetaRefetch].(local.Refetch)
	require.True(t, ok, "Снимок должен содержать функцию повторного запроса")
	require.NoError(t, refetch())

	stale := next(t, sub)
	assert.True(t, stale.Loading)
	assert.Same(t, first.Data, stale.Data, "При повторном запросе сохраняются последние данные")
	assert.Equal(t, local.NetworkRefetch, stale.Meta[local.MetaNetworkStatus])

	gate <- struct{}{}
	second := next(t, sub)
	require.NotNil(t, second.Data)
	assert.Equal(t, []string{"v2"}, second.Data.Items)

	require.NoError(t, sub.Close())
	assert.ErrorIs(t, refetch(), local.ErrSubscriptionClosed)
}

func TestEngine_CloseCancelsFetch(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	engine, err := local.New(func(ctx context.Context, _ cell.Query, _ cell.RequestOptions) (*feed, error) {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	})
	require.NoError(t, err)
	defer engine.Shutdown(context.Background())

	sub, err := engine.Watch(context.Background(), feedQuery{}, cell.RequestOptions{})
	require.NoError(t, err)

	<-started
	require.NoError(t, sub.Close())

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("запрос не был отменен после закрытия подписки")
	}

	_, ok := <-sub.Updates()
	for ok {
		_, ok = <-sub.Updates()
	}
	assert.False(t, ok, "Канал снимков должен быть закрыт")
}

func TestEngine_PanicBecomesError(t *testing.T) {
	t.Parallel()

	engine, err := local.New(func(context.Context, cell.Query, cell.RequestOptions) (*feed, error) {
		panic("сбой")
	})
	require.NoError(t, err)
	defer engine.Shutdown(context.Background())

	sub, err := engine.Watch(context.Background(), feedQuery{}, cell.RequestOptions{})
	require.NoError(t, err)
	defer sub.Close()

	var snap cell.Snapshot[feed]
	for snap = next(t, sub); snap.Loading; snap = next(t, sub) {
	}
	require.Error(t, snap.Err)
	assert.Contains(t, snap.Err.Error(), "сбой")
}

func TestEngine_Shutdown(t *testing.T) {
	t.Parallel()

	engine, err := local.New(func(context.Context, cell.Query, cell.RequestOptions) (*feed, error) {
		return &feed{}, nil
	}, local.WithWorkerPoolConfig(1, 1))
	require.NoError(t, err)

	require.NoError(t, engine.Shutdown(context.Background()))

	_, err = engine.Watch(context.Background(), feedQuery{}, cell.RequestOptions{})
	require.ErrorIs(t, err, local.ErrShutdown)
}

func TestEngine_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := local.New[feed](nil)
	require.Error(t, err)

	_, err = local.New(func(context.Context, cell.Query, cell.RequestOptions) (*feed, error) {
		return nil, nil
	}, local.WithWorkerPoolConfig(0, 1))
	require.Error(t, err)
}

func TestEngine_WithCell(t *testing.T) {
	t.Parallel()

	engine, err := local.New(func(_ context.Context, _ cell.Query, opts cell.RequestOptions) (*feed, error) {
		if opts.Variables["user"] == "nobody" {
			return &feed{}, nil
		}
		return &feed{Items: []string{"a", "b"}}, nil
	})
	require.NoError(t, err)
	defer engine.Shutdown(context.Background())

	text := func(s string) cell.View {
		return func(props cell.Props) cell.Renderable {
			return cell.RenderFunc(func(_ context.Context, w io.Writer) error {
				_, err := fmt.Fprintf(w, s, props["items"])
				return err
			})
		}
	}

	c, err := cell.New[feed](engine, feedQuery{}, cell.Definition[feed]{
		Success: text("элементы: %v"),
		Empty: func(cell.Props) cell.Renderable {
			return cell.RenderFunc(func(_ context.Context, w io.Writer) error {
				_, err := io.WriteString(w, "пусто")
				return err
			})
		},
	})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &out, cell.Variables{"user": "ann"}))
	assert.Equal(t, "элементы: [a b]", out.String())

	out.Reset()
	require.NoError(t, c.Render(context.Background(), &out, cell.Variables{"user": "nobody"}))
	assert.Equal(t, "пусто", out.String())
}
