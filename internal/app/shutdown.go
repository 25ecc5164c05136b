package app

// Shutdown stops every component. It is safe to call more than once.
// Order:
//  1. cancel the application context
//  2. stop the scheduler and wait for in-flight attempts
//  3. wait for the power monitor and metrics endpoint
//  4. wait for pending Telegram sends
func (a *App) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
	}
	if !a.started {
		return nil
	}

	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	a.wg.Wait()
	if a.telegram != nil {
		a.telegram.Wait()
	}

	a.started = false
	a.logger.Info("autoclaim agent stopped")
	return nil
}
