package snapshot

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// File names looked up in an audit directory, in order of preference.
var (
	podFiles     = []string{"pods.json", "pods.yaml", "pods-anonymized.json"}
	nodeFiles    = []string{"nodes.json", "nodes.yaml", "nodes-anonymized.json"}
	pvFiles      = []string{"pvs.json", "pvs.yaml", "pv-anonymized.json"}
	serviceFiles = []string{"services.json", "services.yaml", "services-anonymized.json"}
	usageFiles   = []string{"usage-pods.txt"}
)

// LoadDir reads an audit directory produced by an external collector. Only
// the pod list is required.
func LoadDir(dir string, clusterName string) (*Snapshot, error) {
	s := &Snapshot{ClusterName: clusterName}

	data, err := readFirst(dir, podFiles)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.Wrapf(ErrEmptySnapshot, "no pod list in %s", dir)
	}
	if s.Pods, err = ParsePods(data); err != nil {
		return nil, errors.Wrap(err, "can't parse pod list")
	}
	if err := s.Validate(); err != nil {
		return nil, errors.Wrapf(err, "pod list in %s", dir)
	}

	if data, err = readFirst(dir, nodeFiles); err != nil {
		return nil, err
	} else if data != nil {
		if s.Nodes, err = ParseNodes(data); err != nil {
			return nil, errors.Wrap(err, "can't parse node list")
		}
	}

	if data, err = readFirst(dir, pvFiles); err != nil {
		return nil, err
	} else if data != nil {
		if s.PersistentVolumes, err = ParsePersistentVolumes(data); err != nil {
			return nil, errors.Wrap(err, "can't parse persistent volume list")
		}
	}

	if data, err = readFirst(dir, serviceFiles); err != nil {
		return nil, err
	} else if data != nil {
		if s.Services, err = ParseServices(data); err != nil {
			return nil, errors.Wrap(err, "can't parse service list")
		}
	}

	if data, err = readFirst(dir, usageFiles); err != nil {
		return nil, err
	} else if data != nil {
		if s.Usage, err = ParseUsage(strings.NewReader(string(data))); err != nil {
			return nil, errors.Wrap(err, "can't parse usage table")
		}
	}

	return s, nil
}

// readFirst returns the content of the first existing file, or nil if none
// exists.
func readFirst(dir string, names []string) ([]byte, error) {
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "can't read %s", name)
		}
		return data, nil
	}
	return nil, nil
}

// rawQuantity accepts quantities encoded as JSON strings or bare numbers
// (YAML "cpu: 1").
type rawQuantity string

func (q *rawQuantity) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = rawQuantity(s)
		return nil
	}
	if string(data) == "null" {
		*q = ""
		return nil
	}
	*q = rawQuantity(data)
	return nil
}

type objectMeta struct {
	Name      string            `json:"name"`
	Namespace string            `json:"namespace"`
	Labels    map[string]string `json:"labels"`
}

type podList struct {
	Items []struct {
		Metadata objectMeta `json:"metadata"`
		Spec     struct {
			Containers []struct {
				Name      string `json:"name"`
				Resources struct {
					Requests map[string]rawQuantity `json:"requests"`
					Limits   map[string]rawQuantity `json:"limits"`
				} `json:"resources"`
			} `json:"containers"`
		} `json:"spec"`
	} `json:"items"`
}

// ParsePods decodes a kubectl pod list (JSON or YAML).
func ParsePods(data []byte) ([]Pod, error) {
	var list podList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, err
	}

	pods := make([]Pod, 0, len(list.Items))
	for _, item := range list.Items {
		pod := Pod{
			Namespace: item.Metadata.Namespace,
			Name:      item.Metadata.Name,
		}
		if pod.Namespace == "" {
			pod.Namespace = "default"
		}
		for _, c := range item.Spec.Containers {
			pod.Containers = append(pod.Containers, Container{
				Name: c.Name,
				Requests: Resources{
					CPU:    string(c.Resources.Requests["cpu"]),
					Memory: string(c.Resources.Requests["memory"]),
				},
				Limits: Resources{
					CPU:    string(c.Resources.Limits["cpu"]),
					Memory: string(c.Resources.Limits["memory"]),
				},
			})
		}
		pods = append(pods, pod)
	}

	return pods, nil
}

type nodeList struct {
	Items []struct {
		Metadata objectMeta `json:"metadata"`
		Spec     struct {
			ProviderID string `json:"providerID"`
		} `json:"spec"`
	} `json:"items"`
}

// ParseNodes decodes a kubectl node list.
func ParseNodes(data []byte) ([]Node, error) {
	var list nodeList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(list.Items))
	for _, item := range list.Items {
		nodes = append(nodes, Node{
			Name:       item.Metadata.Name,
			ProviderID: item.Spec.ProviderID,
			Labels:     item.Metadata.Labels,
		})
	}

	return nodes, nil
}

type pvList struct {
	Items []struct {
		Metadata objectMeta `json:"metadata"`
		Spec     struct {
			Capacity map[string]rawQuantity `json:"capacity"`
		} `json:"spec"`
		Status struct {
			Phase string `json:"phase"`
		} `json:"status"`
	} `json:"items"`
}

// ParsePersistentVolumes decodes a kubectl persistent volume list.
func ParsePersistentVolumes(data []byte) ([]PersistentVolume, error) {
	var list pvList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, err
	}

	pvs := make([]PersistentVolume, 0, len(list.Items))
	for _, item := range list.Items {
		pvs = append(pvs, PersistentVolume{
			Name:     item.Metadata.Name,
			Phase:    item.Status.Phase,
			Capacity: string(item.Spec.Capacity["storage"]),
		})
	}

	return pvs, nil
}

type serviceList struct {
	Items []struct {
		Metadata objectMeta `json:"metadata"`
		Spec     struct {
			Type     string            `json:"type"`
			Selector map[string]string `json:"selector"`
		} `json:"spec"`
	} `json:"items"`
}

// ParseServices decodes a kubectl service list.
func ParseServices(data []byte) ([]Service, error) {
	var list serviceList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, err
	}

	services := make([]Service, 0, len(list.Items))
	for _, item := range list.Items {
		services = append(services, Service{
			Namespace: item.Metadata.Namespace,
			Name:      item.Metadata.Name,
			Type:      item.Spec.Type,
			Selector:  item.Spec.Selector,
		})
	}

	return services, nil
}

// ParseUsage reads "kubectl top pods -A" output. The header line is skipped
// and lines with fewer than four columns are ignored.
func ParseUsage(r io.Reader) ([]UsageRow, error) {
	var rows []UsageRow

	scanner := bufio.NewScanner(r)
	header := true
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if header {
			header = false
			if len(fields) > 0 && strings.EqualFold(fields[0], "NAMESPACE") {
				continue
			}
		}
		if len(fields) < 4 {
			continue
		}
		rows = append(rows, UsageRow{
			Namespace: fields[0],
			Name:      fields[1],
			CPU:       fields[2],
			Memory:    fields[3],
		})
	}

	return rows, scanner.Err()
}
