//
// Copyright 2020 - 2022 Nestybox, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// Package corelog provides the shared logging seam used by the pipeline
// and procexec packages. A pipeline can be given its own *logrus.Logger
// through SetLogger; procexec logs through the standard logger.
package corelog

import "github.com/sirupsen/logrus"

// New returns a logging entry tagged with the given component name. If log
// is nil, logrus.StandardLogger() is used.
func New(log *logrus.Logger, component string) *logrus.Entry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return log.WithField("component", component)
}
