// Package service 实现网关业务逻辑
package service

import (
	"sync"
)

// walletLocks 按钱包 id 的互斥锁集合
// 同一钱包的编排串行执行，防止双花；不同钱包并行，无全局锁
type walletLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// newWalletLocks 创建钱包锁集合
func newWalletLocks() *walletLocks {
	return &walletLocks{locks: make(map[int64]*sync.Mutex)}
}

// Lock 锁定钱包，返回解锁函数
func (w *walletLocks) Lock(walletID int64) func() {
	w.mu.Lock()
	lock, ok := w.locks[walletID]
	if !ok {
		lock = &sync.Mutex{}
		w.locks[walletID] = lock
	}
	w.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// TryLock 尝试锁定钱包，返回是否成功与解锁函数
func (w *walletLocks) TryLock(walletID int64) (func(), bool) {
	w.mu.Lock()
	lock, ok := w.locks[walletID]
	if !ok {
		lock = &sync.Mutex{}
		w.locks[walletID] = lock
	}
	w.mu.Unlock()

	if !lock.TryLock() {
		return nil, false
	}
	return lock.Unlock, true
}
