/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Configuration file search path
 */

package config

// PathConfDir is the directory searched first for adbr-server.conf
const PathConfDir = "/etc/adbr-server"
