// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pthread_test

import (
	"errors"
	"fmt"
	"time"

	"github.com/kolkov/gopthread/pthread"
)

// Example starts a thread and collects its exit value.
func Example() {
	t, err := pthread.Create(nil, func(arg any) any {
		return arg.(int) * 2
	}, 21)
	if err != nil {
		panic(err)
	}
	v, err := pthread.Join(t)
	if err != nil {
		panic(err)
	}
	fmt.Println(v)

	// Output:
	// 42
}

// Example_cleanup shows cleanup handlers running in reverse order when a
// thread exits.
func Example_cleanup() {
	t, _ := pthread.Create(nil, func(any) any {
		pthread.CleanupPush(func(arg any) { fmt.Println("cleanup", arg) }, 1)
		pthread.CleanupPush(func(arg any) { fmt.Println("cleanup", arg) }, 2)
		pthread.Exit("done")
		return nil
	}, nil)
	v, _ := pthread.Join(t)
	fmt.Println(v)

	// Output:
	// cleanup 2
	// cleanup 1
	// done
}

// Example_cancel cancels a thread blocked on a semaphore.
func Example_cancel() {
	var s pthread.Sem
	_ = pthread.SemInit(&s, false, 0)

	t, _ := pthread.Create(nil, func(any) any {
		pthread.CleanupPush(func(any) { fmt.Println("unwinding") }, nil)
		_ = pthread.SemWait(&s)
		return "woken"
	}, nil)

	for s.Waiters() == 0 {
		time.Sleep(time.Millisecond)
	}
	_ = pthread.Cancel(t)
	v, _ := pthread.Join(t)
	fmt.Println(v == pthread.Canceled)

	// Output:
	// unwinding
	// true
}

// Example_errorCheck shows an error-checking mutex reporting misuse.
func Example_errorCheck() {
	var m pthread.Mutex
	_ = pthread.MutexInit(&m, &pthread.MutexAttr{Kind: pthread.MutexErrorCheck})

	_ = pthread.MutexLock(&m)
	err := pthread.MutexLock(&m)
	fmt.Println(errors.Is(err, pthread.EDEADLK))
	_ = pthread.MutexUnlock(&m)

	err = pthread.MutexUnlock(&m)
	fmt.Println(pthread.ErrnoOf(err) == pthread.EPERM)

	// Output:
	// true
	// true
}

// Example_namedSemaphore opens the same named semaphore twice.
func Example_namedSemaphore() {
	a, _ := pthread.SemOpen("/example", pthread.O_CREAT, 0o600, 0)
	b, _ := pthread.SemOpen("/example", pthread.O_CREAT, 0o600, 10)

	_ = pthread.SemPost(a)
	v, _ := pthread.SemGetValue(b)
	fmt.Println(v)

	_ = pthread.SemClose(a)
	_ = pthread.SemClose(b)

	// Output:
	// 1
}
